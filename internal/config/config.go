package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	arkembedding "github.com/cloudwego/eino-ext/components/embedding/ark"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Store: store}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	// ForceDemo 为 true 时即使配置了模型也使用演示回答。
	ForceDemo bool
	Knowledge KnowledgeConfig
}

// KnowledgeConfig 描述参考知识库配置，File 为空时不加载知识库。
type KnowledgeConfig struct {
	File           string
	EmbeddingModel string
	RetrieveTopK   int
	RerankTopN     int
}

// 存储后端名称。
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// StoreConfig 描述对话存储配置。
type StoreConfig struct {
	Backend    string
	Dir        string
	SQLitePath string
}

// ClientConfig 描述命令行客户端访问服务端的配置。
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	FallbackFile string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// NewEmbedder 创建知识库使用的向量模型；未配置 ARK_EMBEDDING_MODEL 时返回 nil，检索退化为字面匹配。
func (c AIConfig) NewEmbedder(ctx context.Context) (embedding.Embedder, error) {
	if c.Knowledge.EmbeddingModel == "" {
		return nil, nil
	}
	if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
		return nil, fmt.Errorf("Ark 凭证缺失，无法创建向量模型 %s", c.Knowledge.EmbeddingModel)
	}

	return arkembedding.NewEmbedder(ctx, &arkembedding.EmbeddingConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Knowledge.EmbeddingModel,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	forceDemo, err := parseBoolEnv("EDU_DEMO_MODE", false)
	if err != nil {
		return AIConfig{}, err
	}

	knowledge, err := loadKnowledgeConfig()
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		ForceDemo:   forceDemo,
		Knowledge:   knowledge,
	}, nil
}

func loadKnowledgeConfig() (KnowledgeConfig, error) {
	topK, err := parsePositiveIntEnv("EDU_RETRIEVE_TOP_K", 5)
	if err != nil {
		return KnowledgeConfig{}, err
	}

	topN, err := parsePositiveIntEnv("EDU_RERANK_TOP_N", 3)
	if err != nil {
		return KnowledgeConfig{}, err
	}

	return KnowledgeConfig{
		File:           strings.TrimSpace(os.Getenv("EDU_KNOWLEDGE_FILE")),
		EmbeddingModel: strings.TrimSpace(os.Getenv("ARK_EMBEDDING_MODEL")),
		RetrieveTopK:   topK,
		RerankTopN:     topN,
	}, nil
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreFile))
	switch backend {
	case StoreMemory, StoreFile, StoreSQLite:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q: want memory, file or sqlite", backend)
	}

	dir := getEnvOrDefault("STORE_DIR", "conversations")
	return StoreConfig{
		Backend:    backend,
		Dir:        dir,
		SQLitePath: getEnvOrDefault("STORE_SQLITE_PATH", filepath.Join(dir, "edu-agent.db")),
	}, nil
}

// LoadClient 读取命令行客户端的配置，客户端不需要服务端的模型与存储配置。
func LoadClient() (ClientConfig, error) {
	timeout, err := parseDurationEnv("EDU_HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}
	if timeout <= 0 {
		return ClientConfig{}, fmt.Errorf("invalid EDU_HTTP_TIMEOUT value %s: must be positive", timeout)
	}

	return ClientConfig{
		BaseURL:      strings.TrimRight(getEnvOrDefault("EDU_API_BASE_URL", "http://localhost:8080"), "/"),
		Timeout:      timeout,
		FallbackFile: strings.TrimSpace(os.Getenv("EDU_FALLBACK_FILE")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *val)
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理，与旧的 *_TIMEOUT 配置保持一致。
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
