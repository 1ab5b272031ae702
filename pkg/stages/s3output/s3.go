// Package s3output registers the "s3" stage: uploads a rolled log file to
// S3 when it sees a "fileroll"-tagged event (emitted by pkg/stages/
// fileoutput), grounded on
// original_source/test/test_outputs.py::S3Tests.
package s3output

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("s3", New)
}

type s3Output struct {
	*stage.StageBase

	bucket   string
	pathTmpl string
	uploader *manager.Uploader
}

// New builds the "s3" output. Options: "bucket" (required), "path"
// (destination key template, default "{filename}"), "access_key"/
// "secret_key" (static credentials; falls back to the default AWS
// credential chain when absent), "region" (default "us-east-1").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	bucket := opts.String("bucket", "")
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3: missing required option \"bucket\"", stage.ErrConfiguration)
	}

	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(opts.String("region", "us-east-1")))
	if ak, sk := opts.String("access_key", ""), opts.String("secret_key", ""); ak != "" && sk != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: s3: %w", stage.ErrConfiguration, err)
	}

	s := &s3Output{
		bucket:   bucket,
		pathTmpl: opts.String("path", "{filename}"),
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}
	s.StageBase = stage.New(name, s, opts.Int("queue_size", 64), logger)
	return s, nil
}

// Process uploads the file named by the event's "filename" field whenever
// the event carries the "fileroll" tag; every other event is forwarded
// unchanged. Fileroll events are consumed here, not forwarded.
func (s *s3Output) Process(ev *event.Event) (bool, error) {
	if !ev.HasTag("fileroll") {
		return true, nil
	}

	filename, _ := ev.Get("filename").(string)
	if filename == "" {
		return false, fmt.Errorf("s3: fileroll event missing filename")
	}

	key, err := ev.Format(s.pathTmpl, nil, false)
	if err != nil {
		return false, fmt.Errorf("s3: %w", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		return false, fmt.Errorf("s3: %w", err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(s.Ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return false, fmt.Errorf("s3: upload failed: %w", err)
	}
	return false, nil
}
