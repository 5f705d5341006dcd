package pprof

import (
	"net"
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Addr local-only pprof listener
const Addr = "127.0.0.1:6060"

// Start 非 production 環境啟動 pprof 監控伺服器
func Start() {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	ln, err := net.Listen("tcp", Addr)
	if err != nil {
		logger.Log.Warn("pprof listen failed", zap.String("addr", Addr), zap.Error(err))
		return
	}
	logger.Log.Info("Starting pprof server", zap.String("addr", Addr))
	go serve(ln)
}

func serve(ln net.Listener) {
	if err := http.Serve(ln, nil); err != nil {
		logger.Log.Warn("pprof server failed", zap.Error(err))
	}
}

// pprof endpoints:
// 	•	/debug/pprof/goroutine → 顯示所有 Goroutines (one read + one write pump per connection)
// 	•	/debug/pprof/heap → 顯示記憶體分配 (send queues)
// 	•	/debug/pprof/mutex → registry / thread lock 競爭情況
