package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

const (
	filePrefix = "Session_"
	fileSuffix = ".json"
)

// FileRepository stores each conversation as Session_<id>.json inside a directory.
type FileRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewFileRepository creates dir if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating conversation directory: %w", err)
	}
	log.Printf("[store] file repository at %s", dir)
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(id string) string {
	return filepath.Join(r.dir, filePrefix+id+fileSuffix)
}

// Save writes to a temp file and renames it over the old record.
func (r *FileRepository) Save(_ context.Context, conv chat.Conversation) error {
	if !ValidID(conv.ID) {
		return fmt.Errorf("invalid conversation id %q", conv.ID)
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding conversation: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.dir, ".tmp-"+conv.ID+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing conversation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path(conv.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing conversation file: %w", err)
	}
	return nil
}

func (r *FileRepository) Get(_ context.Context, id string) (chat.Conversation, error) {
	if !ValidID(id) {
		return chat.Conversation{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read(r.path(id))
}

func (r *FileRepository) read(path string) (chat.Conversation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return chat.Conversation{}, ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("reading conversation: %w", err)
	}

	var conv chat.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if conv.Messages == nil {
		conv.Messages = []chat.Message{}
	}
	return conv, nil
}

// List skips unreadable files, logging them.
func (r *FileRepository) List(_ context.Context) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	out := make([]chat.Conversation, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		conv, err := r.read(filepath.Join(r.dir, name))
		if err != nil {
			log.Printf("[store] skipping %s: %v", name, err)
			continue
		}
		if conv.ID == "" {
			conv.ID = strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		}
		out = append(out, conv)
	}
	return out, nil
}

func (r *FileRepository) Delete(_ context.Context, id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := os.Remove(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

func (r *FileRepository) Close() error { return nil }
