// Package kafka registers the "kafka" stage: either consumes a topic into
// events or produces events onto a topic, generalized from the teacher's
// stages/rv-live/kafka.go consumer-group client bring-up.
package kafka

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("kafka", New)
}

type kafkaStage struct {
	*stage.StageBase

	mode  string // "consume" or "produce"
	topic string
	field string

	client   *kgo.Client
	readDone chan struct{}
}

// New builds the "kafka" stage. Options: "brokers" (required, comma-
// separated seed list), "topic" (required), "mode" ("consume" or
// "produce", default "consume"), "group" (consumer group, default
// "logcabin"), "field" (destination/source field for the raw record
// value in consume mode, default "data").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	brokers := opts.String("brokers", "")
	if brokers == "" {
		return nil, fmt.Errorf("%w: kafka: missing required option \"brokers\"", stage.ErrConfiguration)
	}
	topic := opts.String("topic", "")
	if topic == "" {
		return nil, fmt.Errorf("%w: kafka: missing required option \"topic\"", stage.ErrConfiguration)
	}
	mode := opts.String("mode", "consume")
	if mode != "consume" && mode != "produce" {
		return nil, fmt.Errorf("%w: kafka: unknown mode %q", stage.ErrConfiguration, mode)
	}

	kgoOpts := []kgo.Opt{kgo.SeedBrokers(brokers)}
	if mode == "consume" {
		kgoOpts = append(kgoOpts,
			kgo.ConsumerGroup(opts.String("group", "logcabin")),
			kgo.ConsumeTopics(topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		)
	}
	client, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: kafka: %w", stage.ErrConfiguration, err)
	}

	k := &kafkaStage{
		mode:     mode,
		topic:    topic,
		field:    opts.String("field", "data"),
		client:   client,
		readDone: make(chan struct{}),
	}
	k.StageBase = stage.New(name, k, opts.Int("queue_size", 64), logger)
	return k, nil
}

// Process is the "produce" mode path: writes the event's field as a
// record value onto the configured topic. In "consume" mode, Process is
// never called — consume() writes directly to Output().
func (k *kafkaStage) Process(ev *event.Event) (bool, error) {
	if k.mode != "produce" {
		return true, nil
	}
	body, err := ev.ToJSON()
	if err != nil {
		return false, fmt.Errorf("kafka: %w", err)
	}
	result := k.client.ProduceSync(k.Ctx, &kgo.Record{Topic: k.topic, Value: body})
	if err := result.FirstErr(); err != nil {
		return false, fmt.Errorf("kafka: produce: %w", err)
	}
	return false, nil
}

func (k *kafkaStage) Start() {
	k.StageBase.Start()
	k.verifyTopic()
	if k.mode == "consume" {
		go k.consume()
	} else {
		close(k.readDone)
	}
}

// verifyTopic checks the configured topic is present in the cluster
// metadata, logging a warning rather than failing the stage if it
// isn't (the broker may be configured to auto-create it on first
// produce/consume), generalized from the teacher's discoverTopics.
func (k *kafkaStage) verifyTopic() {
	admin := kadm.NewClient(k.client)
	meta, err := admin.Metadata(k.Ctx)
	if err != nil {
		k.Warn().Err(err).Str("topic", k.topic).Msg("kafka: could not fetch topic metadata")
		return
	}
	if t, ok := meta.Topics[k.topic]; !ok || t.Err != nil {
		k.Warn().Str("topic", k.topic).Msg("kafka: topic not found in cluster metadata")
	}
}

func (k *kafkaStage) consume() {
	defer close(k.readDone)
	for {
		fetches := k.client.PollFetches(k.Ctx)
		if k.Ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				k.Warn().Err(e.Err).Str("topic", e.Topic).Msg("kafka fetch error")
			}
		}
		fetches.EachRecord(func(r *kgo.Record) {
			ev := &event.Event{}
			if err := ev.UnmarshalJSON(r.Value); err != nil {
				ev = event.New(map[string]any{k.field: string(r.Value)})
			}
			if err := k.Output().Put(k.Ctx, ev); err != nil {
				return
			}
		})
		k.client.AllowRebalance()
	}
}

func (k *kafkaStage) Stop() {
	k.Cancel(stage.ErrStageStopped) // unblocks a pending PollFetches
	<-k.readDone
	k.StageBase.Stop()
	k.client.Close()
}
