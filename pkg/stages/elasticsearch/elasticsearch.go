// Package elasticsearch registers the "elasticsearch" stage: indexes each
// event as a document, grounded on
// original_source/test/test_outputs.py::ElasticsearchTests.
package elasticsearch

import (
	"bytes"
	"fmt"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("elasticsearch", New)
}

type esOutput struct {
	*stage.StageBase

	index string
	typ   string

	client *elasticsearch.Client
}

// New builds the "elasticsearch" output. Options: "url" (default
// "http://localhost:9200"), "index" (required), "type" (default "event";
// stored on the stage but not sent with the index request).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	index := opts.String("index", "")
	if index == "" {
		return nil, fmt.Errorf("%w: elasticsearch: missing required option \"index\"", stage.ErrConfiguration)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{opts.String("url", "http://localhost:9200")},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: elasticsearch: %w", stage.ErrConfiguration, err)
	}

	e := &esOutput{
		index:  index,
		typ:    opts.String("type", "event"),
		client: client,
	}
	e.StageBase = stage.New(name, e, opts.Int("queue_size", 64), logger)
	return e, nil
}

func (e *esOutput) Process(ev *event.Event) (bool, error) {
	body, err := ev.ToJSON()
	if err != nil {
		return false, fmt.Errorf("elasticsearch: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: "",
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(e.Ctx, e.client)
	if err != nil {
		return false, fmt.Errorf("elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, fmt.Errorf("elasticsearch: index request failed: %s", res.Status())
	}
	return false, nil
}
