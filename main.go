package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/BrunoKrugel/guestshots/internal/client"
	"github.com/BrunoKrugel/guestshots/internal/config"
	"github.com/BrunoKrugel/guestshots/internal/logging"
	"github.com/BrunoKrugel/guestshots/internal/upload"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

// multipart parts above this size are spooled to disk
const formMemory = 32 << 20

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	client := client.NewRestyClient(cfg)
	manager := upload.NewManager(cfg, client, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newMux(cfg, manager, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("upload server listening",
		zap.String("port", cfg.Server.Port),
		zap.Bool("stripExif", cfg.Server.StripExif),
		zap.Int("maxFiles", cfg.Server.MaxFiles))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newMux(cfg *config.Config, manager *upload.Manager, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		handleUpload(w, r, manager, cfg, logger)
	})
	mux.HandleFunc("/uploads/recent", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, manager.Recent.Snapshot(), logger)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

func handleUpload(w http.ResponseWriter, r *http.Request, manager *upload.Manager, cfg *config.Config, logger *zap.Logger) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// room for every file at its limit plus form overhead
	limit := int64(cfg.Server.MaxFiles)*cfg.MaxUploadBytes() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		logger.Debug("invalid upload form", zap.Error(err))
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "no files", http.StatusBadRequest)
		return
	}

	files := make([]upload.Incoming, 0, len(headers))
	for _, fh := range headers {
		files = append(files, upload.Incoming{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Size:      fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	records, err := manager.Process(r.Context(), files)
	if err != nil {
		if errors.Is(err, upload.ErrTooManyFiles) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("upload batch failed", zap.Error(err))
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response error", zap.Error(err))
	}
}
