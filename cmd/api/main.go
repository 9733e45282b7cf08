package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/edu-agent/internal/config"
	"github.com/zhouzirui/edu-agent/internal/handler"
	"github.com/zhouzirui/edu-agent/internal/service/ai"
	"github.com/zhouzirui/edu-agent/internal/service/answer"
	"github.com/zhouzirui/edu-agent/internal/service/chat"
	"github.com/zhouzirui/edu-agent/internal/service/fallback"
	"github.com/zhouzirui/edu-agent/internal/service/knowledge"
	"github.com/zhouzirui/edu-agent/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	repo, err := openRepository(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer repo.Close()

	chatService := chat.NewService(repo)
	answerService := newAnswerService(ctx, cfg.AI)

	router := handler.NewRouter(chatService, answerService)

	startServer(ctx, cfg.Server, router)
}

func openRepository(cfg config.StoreConfig) (store.Repository, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		log.Println("[store] using in-memory repository, conversations are lost on restart")
		return store.NewMemoryRepository(), nil
	case config.StoreFile:
		return store.NewFileRepository(cfg.Dir)
	case config.StoreSQLite:
		return store.NewSQLiteRepository(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newAnswerService 在模型不可用时退回演示模式。
func newAnswerService(ctx context.Context, cfg config.AIConfig) *answer.Service {
	if cfg.ForceDemo {
		log.Println("EDU_DEMO_MODE 已开启，使用演示回答")
		return answer.NewDemo(fallback.Demo())
	}
	if !cfg.Enabled() {
		log.Println("Ark 凭证未配置，使用演示模式")
		return answer.NewDemo(fallback.Demo())
	}

	var kb ai.Knowledge
	if base := loadKnowledge(ctx, cfg); base != nil {
		kb = base
	}

	aiService, err := ai.NewService(ctx, cfg, kb)
	if err != nil {
		log.Printf("warning: failed to initialize AI service: %v", err)
		log.Println("continuing in demo mode - 请检查 Ark 模型相关环境变量")
		return answer.NewDemo(fallback.Demo())
	}

	log.Println("AI service initialized successfully")
	return answer.NewProduction(aiService)
}

// loadKnowledge 加载参考知识库，失败时仅记录日志，回答不再引用知识库。
func loadKnowledge(ctx context.Context, cfg config.AIConfig) *knowledge.Base {
	kc := cfg.Knowledge
	if kc.File == "" {
		log.Println("EDU_KNOWLEDGE_FILE 未配置，回答不使用知识库")
		return nil
	}

	embedder, err := cfg.NewEmbedder(ctx)
	if err != nil {
		log.Printf("warning: failed to create embedder, falling back to lexical retrieval: %v", err)
		embedder = nil
	}

	base, err := knowledge.Load(ctx, kc.File, embedder, kc.RetrieveTopK, kc.RerankTopN)
	if err != nil {
		log.Printf("warning: failed to load knowledge base: %v", err)
		return nil
	}
	return base
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("EduAgent backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
