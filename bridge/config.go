package bridge

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"gopkg.in/ini.v1"
)

// ssmPathPrefix mirrors confighandler.py's /mq2wsbridge/<section>/<key> layout.
const ssmPathPrefix = "/mq2wsbridge"

// kv is the minimal typed-lookup surface LoadFromINI and LoadFromSSM share,
// so both sources can be applied through one piece of field-mapping code.
type kv interface {
	str(key string) string
	intOr(key string, def int) int
	boolOr(key string, def bool) bool
}

type iniSection struct{ *ini.Section }

func (s iniSection) str(key string) string { return s.Key(key).String() }
func (s iniSection) intOr(key string, def int) int {
	v, err := s.Key(key).Int()
	if err != nil || v == 0 {
		return def
	}
	return v
}
func (s iniSection) boolOr(key string, def bool) bool {
	v, err := s.Key(key).Bool()
	if err != nil {
		return def
	}
	return v
}

// LoadFromINI populates Settings from an INI file, following the
// aws_mq / ws_api / aws_cloudwatch section layout of the original bridge
// configuration file.
func LoadFromINI(path string) (Settings, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Settings{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	s := DefaultSettings()
	applySections(&s,
		iniSection{f.Section("aws_mq")},
		iniSection{f.Section("ws_api")},
		iniSection{f.Section("aws_cloudwatch")},
	)
	return s, nil
}

func applySections(s *Settings, mq, ws, cw kv) {
	s.Broker.URL = mq.str("url")
	s.Broker.QueueToWS = mq.str("queue_to_ws")
	s.Broker.QueueFromWS = mq.str("queue_from_ws")
	s.Broker.ConsumerTag = orDefault(mq.str("consumer_tag"), s.Broker.ConsumerTag)
	s.Broker.MaxRetries = mq.intOr("max_retries", s.Broker.MaxRetries)
	s.Broker.TTLFromWS = mq.intOr("ttl_from_ws", s.Broker.TTLFromWS)

	s.WS.URL = ws.str("url")
	s.WS.KeyID = ws.str("key_id")
	s.WS.SecretKey = ws.str("secret_key")
	s.WS.Region = orDefault(ws.str("region"), s.WS.Region)
	s.WS.PingIntervalSecs = ws.intOr("ping_interval", s.WS.PingIntervalSecs)
	s.WS.MaxConnectAttempts = ws.intOr("max_connect_attempts", s.WS.MaxConnectAttempts)
	s.WS.AttemptWindowSecs = ws.intOr("attempt_window_secs", s.WS.AttemptWindowSecs)

	s.Obs.CWRegion = cw.str("region")
	s.Obs.CWLogGroup = cw.str("log_group")
	s.Obs.CWLogStream = cw.str("log_stream")
	s.Obs.CWMetricsNamespace = cw.str("metrics_namespace")
	s.Obs.CWMetricsResolution = cw.intOr("metrics_resolution", s.Obs.CWMetricsResolution)
	s.Obs.CWRetentionDays = cw.intOr("retention_days", s.Obs.CWRetentionDays)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SSMStore is the subset of the SSM client the config loader needs; a
// narrow interface so tests can substitute a fake without standing up AWS.
type SSMStore interface {
	GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// NewSSMClient builds an SSM client from the ambient AWS configuration
// (environment, shared config, or EC2 instance role), using the same
// aws-sdk-go-v2 config loader CloudWatchMetricsSink and CloudWatchLogSink use.
func NewSSMClient(ctx context.Context, region string) (SSMStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

type ssmSection map[string]string

func (m ssmSection) str(key string) string { return m[key] }
func (m ssmSection) intOr(key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	n := 0
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n == 0 {
		return def
	}
	return n
}
func (m ssmSection) boolOr(key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	return v == "true" || v == "1"
}

// LoadFromSSM populates Settings by reading every parameter under
// /mq2wsbridge/<section>/ for each of the three known sections.
func LoadFromSSM(ctx context.Context, store SSMStore) (Settings, error) {
	mq, err := fetchSection(ctx, store, "aws_mq")
	if err != nil {
		return Settings{}, err
	}
	ws, err := fetchSection(ctx, store, "ws_api")
	if err != nil {
		return Settings{}, err
	}
	cw, err := fetchSection(ctx, store, "aws_cloudwatch")
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	applySections(&s, mq, ws, cw)
	return s, nil
}

func fetchSection(ctx context.Context, store SSMStore, section string) (ssmSection, error) {
	out := ssmSection{}
	path := ssmPathPrefix + "/" + section + "/"
	var nextToken *string
	for {
		resp, err := store.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(path),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("reading SSM parameters under %s: %w", path, err)
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key := (*p.Name)[len(path):]
			out[key] = *p.Value
		}
		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}
	return out, nil
}

// ConvertINIToSSM performs a one-shot migration of an INI config file into
// SSM parameters, matching confighandler.py's convert_ini_to_ssm. It is
// idempotent: re-running it overwrites the same parameter paths.
func ConvertINIToSSM(ctx context.Context, path string, store SSMStore) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	for _, sectionName := range []string{"aws_mq", "ws_api", "aws_cloudwatch"} {
		section := f.Section(sectionName)
		for _, key := range section.Keys() {
			if key.Value() == "" {
				continue
			}
			paramPath := fmt.Sprintf("%s/%s/%s", ssmPathPrefix, sectionName, key.Name())
			_, err := store.PutParameter(ctx, &ssm.PutParameterInput{
				Name:      aws.String(paramPath),
				Value:     aws.String(key.Value()),
				Type:      ssmtypes.ParameterTypeSecureString,
				Overwrite: aws.Bool(true),
			})
			if err != nil {
				return fmt.Errorf("writing SSM parameter %s: %w", paramPath, err)
			}
		}
	}
	return nil
}
