package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// cwMutexAcquireTimeout bounds how long Write waits to acquire the sequence
// token mutex before giving up and falling back to stderr, per spec.md §5's
// shared-resource rule for the log sink's sequence token.
const cwMutexAcquireTimeout = 3 * time.Second

// timedMutex is a mutex whose Lock can time out, implemented as a
// capacity-1 channel semaphore since sync.Mutex has no bounded-wait lock.
type timedMutex chan struct{}

func newTimedMutex() timedMutex { return make(timedMutex, 1) }

func (m timedMutex) tryLock(timeout time.Duration) bool {
	select {
	case m <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m timedMutex) unlock() { <-m }

// instanceIDResolver caches the EC2 instance ID for the lifetime of the
// process, following get_instanceid()'s single-query-then-cache behavior.
type instanceIDResolver struct {
	once sync.Once
	id   string
}

var sharedInstanceID instanceIDResolver

// resolveInstanceID queries the EC2 Instance Metadata Service for this
// host's instance ID, falling back to "local-"+hostname when not running on
// EC2 (or when IMDS is unreachable).
func resolveInstanceID(ctx context.Context) string {
	sharedInstanceID.once.Do(func() {
		fallback := "local-" + hostnameOrUnknown()
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			sharedInstanceID.id = fallback
			return
		}
		client := imds.NewFromConfig(cfg)
		out, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
		if err != nil {
			sharedInstanceID.id = fallback
			return
		}
		sharedInstanceID.id = out.InstanceID
	})
	return sharedInstanceID.id
}

func hostnameOrUnknown() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// CloudWatchMetricsSink publishes counter samples to CloudWatch, dimensioned
// by instance_id and pid exactly as metricshandler.py's put_metric_data does.
type CloudWatchMetricsSink struct {
	client    *cloudwatch.Client
	namespace string
	pid       string
}

// NewCloudWatchMetricsSink builds a metrics sink for the given namespace and
// region.
func NewCloudWatchMetricsSink(ctx context.Context, region, namespace string) (*CloudWatchMetricsSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &CloudWatchMetricsSink{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		pid:       fmt.Sprintf("%d", os.Getpid()),
	}, nil
}

// Put sends a single data point for name, matching put_metric_data's
// Dimensions (instance_id, pid) and Count unit.
func (s *CloudWatchMetricsSink) Put(ctx context.Context, name string, value float64) error {
	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(s.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  aws.Time(time.Now().UTC()),
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("instance_id"), Value: aws.String(resolveInstanceID(ctx))},
					{Name: aws.String("pid"), Value: aws.String(s.pid)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("putting metric %s.%s: %w", s.namespace, name, err)
	}
	return nil
}

// CloudWatchLogSink streams formatted log lines to a CloudWatch Logs group
// and stream, reproducing loghandler.py's sequence-token chaining, with the
// sequence-token mutex acquire bounded to 3 seconds.
type CloudWatchLogSink struct {
	client    *cloudwatchlogs.Client
	group     string
	stream    string
	retention int32

	mu       timedMutex
	seqToken *string
}

// NewCloudWatchLogSink ensures the log group/stream exist (tolerating the
// "already exists" case) and returns a sink ready to accept lines.
func NewCloudWatchLogSink(ctx context.Context, region, group, stream string, retentionDays int32) (*CloudWatchLogSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := cloudwatchlogs.NewFromConfig(cfg)

	sink := &CloudWatchLogSink{client: client, group: group, stream: stream, retention: retentionDays, mu: newTimedMutex()}

	_, err = client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(group)})
	if err != nil && !isResourceAlreadyExists(err) {
		return nil, fmt.Errorf("creating log group %s: %w", group, err)
	}
	if retentionDays > 0 {
		_, _ = client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    aws.String(group),
			RetentionInDays: aws.Int32(retentionDays),
		})
	}

	_, err = client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	})
	if err != nil && !isResourceAlreadyExists(err) {
		return nil, fmt.Errorf("creating log stream %s: %w", stream, err)
	}

	if err := sink.refreshSequenceToken(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func isResourceAlreadyExists(err error) bool {
	var rae *cwltypes.ResourceAlreadyExistsException
	return errors.As(err, &rae)
}

func (s *CloudWatchLogSink) refreshSequenceToken(ctx context.Context) error {
	out, err := s.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(s.group),
		LogStreamNamePrefix: aws.String(s.stream),
	})
	if err != nil {
		return fmt.Errorf("describing log stream %s: %w", s.stream, err)
	}
	for _, st := range out.LogStreams {
		if st.LogStreamName != nil && *st.LogStreamName == s.stream {
			s.seqToken = st.UploadSequenceToken
			return nil
		}
	}
	return nil
}

// Write sends a single log line to CloudWatch Logs, chaining the upload
// sequence token the way loghandler.py's output_log_message does. Acquiring
// the sequence-token mutex is bounded to cwMutexAcquireTimeout; if it can't
// be acquired in time, the line is written to stderr instead and Write
// returns an error, matching the original's cw_mutex timeout behavior.
func (s *CloudWatchLogSink) Write(line string) error {
	if !s.mu.tryLock(cwMutexAcquireTimeout) {
		fmt.Fprintln(os.Stderr, line)
		return fmt.Errorf("timed out acquiring CloudWatch log sink mutex after %s", cwMutexAcquireTimeout)
	}
	defer s.mu.unlock()

	ctx := context.Background()
	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
		LogEvents: []cwltypes.InputLogEvent{
			{Message: aws.String(line), Timestamp: aws.Int64(time.Now().UnixMilli())},
		},
		SequenceToken: s.seqToken,
	}
	out, err := s.client.PutLogEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("putting log event: %w", err)
	}
	s.seqToken = out.NextSequenceToken
	return nil
}
