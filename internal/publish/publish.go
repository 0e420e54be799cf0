// Package publish implements the optional Match Publisher (C13): it
// pushes each Match result onto an MQTT broker as JSON, one message per
// class, so external systems (PLC, dashboard, another service) can react
// to matches without polling the Match History Store.
//
// Grounded on internal/detector/async.go's decoupling pattern (a buffered
// channel plus a background goroutine keeps a slow or unreachable
// sink from ever blocking the match pipeline), adapted here to drive
// github.com/eclipse/paho.mqtt.golang instead of a result channel.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"shapematch/internal/detector"
	"shapematch/internal/matcherr"
)

const (
	qos         = 1
	retained    = false
	publishWait = 5 * time.Second
	queueDepth  = 256
)

// Publisher pushes Match Points to an MQTT broker, one job queue feeding
// a single background goroutine so a stalled broker never blocks Match.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	logger      *zap.SugaredLogger
	jobs        chan publishJob
	done        chan struct{}
}

type publishJob struct {
	classID string
	pts     []detector.MatchPoint
}

// wireMessage is the JSON payload shape published per class.
type wireMessage struct {
	ClassID string                  `json:"class_id"`
	Matches []detector.MatchPoint   `json:"matches"`
	Count   int                     `json:"count"`
}

// NewPublisher connects to brokerURL and starts the background publish
// loop. topicPrefix is prepended to each class id to form the topic.
func NewPublisher(brokerURL, topicPrefix string, logger *zap.SugaredLogger) (*Publisher, error) {
	const op = "publish.NewPublisher"
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("shapematch-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Infow("mqtt connected", "broker", brokerURL)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishWait) {
		return nil, matcherr.New(matcherr.InvalidInput, op, "timed out connecting to broker")
	}
	if err := token.Error(); err != nil {
		return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}

	p := &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		logger:      logger,
		jobs:        make(chan publishJob, queueDepth),
		done:        make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// Publish enqueues pts for classID and returns immediately; the actual
// MQTT publish happens on the background goroutine.
func (p *Publisher) Publish(classID string, pts []detector.MatchPoint) error {
	const op = "Publisher.Publish"
	select {
	case p.jobs <- publishJob{classID: classID, pts: pts}:
		return nil
	default:
		return matcherr.New(matcherr.InvalidInput, op, "publish queue full")
	}
}

func (p *Publisher) loop() {
	for {
		select {
		case job := <-p.jobs:
			p.publishNow(job)
		case <-p.done:
			return
		}
	}
}

func (p *Publisher) publishNow(job publishJob) {
	payload, err := json.Marshal(wireMessage{
		ClassID: job.classID,
		Matches: job.pts,
		Count:   len(job.pts),
	})
	if err != nil {
		p.logger.Errorw("marshal match payload", "class_id", job.classID, "error", err)
		return
	}

	topic := p.topicPrefix + "/" + job.classID
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishWait) {
		p.logger.Warnw("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Errorw("mqtt publish failed", "topic", topic, "error", err)
	}
}

// Close stops the background loop and disconnects from the broker.
func (p *Publisher) Close() {
	close(p.done)
	p.client.Disconnect(250)
}
