// =============================================================================
// 📦 AskForge 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("ASKFORGE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 AskForge worker 的完整配置结构
type Config struct {
	// Redis 队列/事件/快照后端；Addr 为空时全部退化为内存实现
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Worker 作业执行配置
	Worker WorkerConfig `yaml:"worker" env:"WORKER"`

	// Pipeline 管线行为配置
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Checkpoint 会话快照配置
	Checkpoint CheckpointConfig `yaml:"checkpoint" env:"CHECKPOINT"`

	// LLM OpenAI 兼容端点；APIKey 为空时管线以无 LLM 回退模式运行
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 地址（host:port），为空表示不用 Redis
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// WorkerConfig 作业执行配置
type WorkerConfig struct {
	// 队列轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// 单作业执行上限
	JobTimeout time.Duration `yaml:"job_timeout" env:"JOB_TIMEOUT"`
	// done 之后事件流的保留时长
	EventTTL time.Duration `yaml:"event_ttl" env:"EVENT_TTL"`
}

// PipelineConfig 管线行为配置
type PipelineConfig struct {
	// 子查询上限
	MaxSubQueries int `yaml:"max_sub_queries" env:"MAX_SUB_QUERIES"`
	// 检索并发上限
	SearchConcurrency int `yaml:"search_concurrency" env:"SEARCH_CONCURRENCY"`
	// 单查询检索超时
	SearchTimeout time.Duration `yaml:"search_timeout" env:"SEARCH_TIMEOUT"`
	// 单子查询检索数
	SearchK int `yaml:"search_k" env:"SEARCH_K"`
	// 最终上下文数
	TopK int `yaml:"top_k" env:"TOP_K"`
	// 单一来源上限
	MaxPerSource int `yaml:"max_per_source" env:"MAX_PER_SOURCE"`
	// 单篇压缩后字符上限
	MaxCharsPerDoc int `yaml:"max_chars_per_doc" env:"MAX_CHARS_PER_DOC"`
	// 摘要触发轮数阈值
	SummaryThreshold int `yaml:"summary_threshold" env:"SUMMARY_THRESHOLD"`
	// 安全分类是否启用 LLM 复核
	SafeguardUseLLM bool `yaml:"safeguard_use_llm" env:"SAFEGUARD_USE_LLM"`
	// 生成器限速（每秒请求数），≤0 不限速
	GeneratorRPS float64 `yaml:"generator_rps" env:"GENERATOR_RPS"`
}

// CheckpointConfig 会话快照配置
type CheckpointConfig struct {
	// 每线程保留的快照数
	KeepLast int `yaml:"keep_last" env:"KEEP_LAST"`
}

// LLMConfig OpenAI 兼容端点配置
type LLMConfig struct {
	// 端点根地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Bearer 凭证
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 生成模型名
	Model string `yaml:"model" env:"MODEL"`
	// 嵌入模型名
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次生成 token 上限
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// HTTP 超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug / info / warn / error
	Level string `yaml:"level" env:"LEVEL"`
	// 格式: json / console
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			KeyPrefix: "askforge",
		},
		Worker: WorkerConfig{
			PollInterval: 200 * time.Millisecond,
			JobTimeout:   2 * time.Minute,
			EventTTL:     time.Hour,
		},
		Pipeline: PipelineConfig{
			MaxSubQueries:     4,
			SearchConcurrency: 4,
			SearchTimeout:     10 * time.Second,
			SearchK:           5,
			TopK:              5,
			MaxPerSource:      2,
			MaxCharsPerDoc:    500,
			SummaryThreshold:  5,
		},
		Checkpoint: CheckpointConfig{
			KeepLast: 5,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
			Timeout:        60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "ASKFORGE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
