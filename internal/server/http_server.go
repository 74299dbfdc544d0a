// Package server 轮询进程的状态服务
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MetricsSource 提供轮询指标
type MetricsSource interface {
	LastErr() string
	GetSnapshot() map[string]interface{}
}

// HTTPServer 状态 HTTP 服务器
type HTTPServer struct {
	server  *http.Server
	addr    string
	logger  *zap.Logger
	metrics MetricsSource
}

// NewHTTPServer 创建状态服务器
func NewHTTPServer(addr string, metrics MetricsSource, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		metrics: metrics,
		logger:  logger,
	}
}

// Router 构建路由
func (s *HTTPServer) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	poller := router.PathPrefix("/ws/v1/poller").Subrouter()
	poller.HandleFunc("/health", s.handleHealth).Methods("GET")
	poller.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	return router
}

// Start 在后台启动服务器，监听失败时直接返回错误
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         listener.Addr().String(),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("Starting poller status server", zap.String("addr", s.server.Addr))
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Poller status server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Stopping poller status server")
	return s.server.Shutdown(ctx)
}

// GetAddress 获取监听地址
func (s *HTTPServer) GetAddress() string {
	if s.server != nil {
		return s.server.Addr
	}
	return s.addr
}

// handleHealth 上一个周期失败时返回 500
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if lastErr := s.metrics.LastErr(); lastErr != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "error",
			"error":  lastErr,
		})
		return
	}
	s.writeJSONResponse(w, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, s.metrics.GetSnapshot())
}

// loggingMiddleware 日志中间件
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

// writeJSONResponse 写入 JSON 响应
func (s *HTTPServer) writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
