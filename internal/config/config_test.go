package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: "9090"
  mode: "release"
database:
  mysql:
    dsn: "user:pass@tcp(db:3306)/fleet?parseTime=True"
  redis:
    addr: "redis:6379"
    password: "secret"
    db: 2
jwt:
  secret: "test-secret"
  access_token_expire_hours: 12
  refresh_token_expire_days: 14
log:
  level: "debug"
  format: "console"
  output_path: "stdout"
kafka:
  brokers: "kafka:9092"
  topic: "kb_ingest_tasks"
elasticsearch:
  addresses: "http://es:9200"
  index_name: "kb_entries"
minio:
  endpoint: "minio:9000"
  access_key_id: "ak"
  secret_access_key: "sk"
  bucket_name: "fleet-support"
embedding:
  model: "text-embedding-3-small"
  dimensions: 1536
llm:
  model: "gpt-4o-mini"
analysis:
  cpu_threshold: 70
  default_top_n: 10
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitParsesYAML(t *testing.T) {
	Init(writeTestConfig(t, testYAML))

	require.Equal(t, "9090", Conf.Server.Port)
	require.Equal(t, "release", Conf.Server.Mode)
	require.Equal(t, "user:pass@tcp(db:3306)/fleet?parseTime=True", Conf.Database.MySQL.DSN)
	require.Equal(t, 2, Conf.Database.Redis.DB)
	require.Equal(t, "test-secret", Conf.JWT.Secret)
	require.Equal(t, 12, Conf.JWT.AccessTokenExpireHours)
	require.Equal(t, "kb_ingest_tasks", Conf.Kafka.Topic)
	require.Equal(t, "kb_entries", Conf.Elasticsearch.IndexName)
	require.Equal(t, 1536, Conf.Embedding.Dimensions)
	require.Equal(t, "gpt-4o-mini", Conf.LLM.Model)
}

func TestInitAppliesDefaults(t *testing.T) {
	Init(writeTestConfig(t, testYAML))

	// 文件里显式覆盖的值生效
	require.InDelta(t, 70.0, Conf.Analysis.CPUThreshold, 1e-9)
	require.Equal(t, 10, Conf.Analysis.DefaultTopN)
	// 未配置的走默认值
	require.InDelta(t, 80.0, Conf.Analysis.RAMThreshold, 1e-9)
	require.InDelta(t, 90.0, Conf.Analysis.DiskThreshold, 1e-9)
	require.InDelta(t, 0.5, Conf.Retrieval.Threshold, 1e-9)
	require.Equal(t, 3, Conf.Retrieval.TopK)
	require.Equal(t, 24, Conf.Session.TTLHours)
	require.Equal(t, 20, Conf.Session.MaxHistory)
}
