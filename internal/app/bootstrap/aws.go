package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/medassist/internal/archive"
	appconfig "github.com/wolfman30/medassist/internal/config"
	"github.com/wolfman30/medassist/internal/events"
	"github.com/wolfman30/medassist/pkg/logging"
)

// BuildEventHandler returns the SQS publisher when a queue is configured and
// the logging handler otherwise.
func BuildEventHandler(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) events.DeliveryHandler {
	if cfg.AppointmentEventsQueueURL != "" && awsCfg != nil {
		return events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.AppointmentEventsQueueURL, logger)
	}
	return events.NewLogHandler(logger)
}

// BuildArchive returns the S3 archive, or a disabled store without a bucket.
func BuildArchive(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if cfg.ArchiveBucket == "" || awsCfg == nil {
		return archive.NewStore(nil, "", logger)
	}
	return archive.NewStore(s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	}), cfg.ArchiveBucket, logger)
}
