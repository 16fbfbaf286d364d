package events

import (
	"encoding/json"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// Publisher is the slice of the AMQP channel surface the observer uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AmqpObserver mirrors stage events onto a message exchange for external
// monitoring. Publish failures are logged and swallowed so an unhealthy
// broker never stalls a sign-in.
type AmqpObserver struct {
	Channel    Publisher
	Exchange   string
	RoutingKey string

	log *logger.Logger
}

func NewAmqpObserver(ch Publisher, exchange, routingKey string) *AmqpObserver {
	return &AmqpObserver{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
		log:        logger.Default(),
	}
}

// ConnectAmqp dials the broker with exponential backoff.
func ConnectAmqp(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 7
	waitTime := 1 * time.Second

	queueLogger := logger.Default()

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		queueLogger.Warnf("Attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		time.Sleep(waitTime)
		waitTime = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	return nil, err
}

func (o *AmqpObserver) StageStarted(stage reasoncodes.Stage, domain string) {
	o.publish(startedEvent(stage, domain))
}

func (o *AmqpObserver) StageCompleted(stage reasoncodes.Stage, domain string) {
	o.publish(completedEvent(stage, domain))
}

func (o *AmqpObserver) StageFailed(stage reasoncodes.Stage, domain string, err error) {
	o.publish(failedEvent(stage, domain, err))
}

func (o *AmqpObserver) publish(event StageEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		o.log.Errorf(err, "could not serialize stage event")
		return
	}

	err = o.Channel.Publish(
		o.Exchange,
		o.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		o.log.Errorf(err, "could not publish stage event")
	}
}
