package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/leycm/pycraft/server"
	"github.com/leycm/pycraft/world"
)

// pycraft 入口：启动权威体素世界服务端（TCP 协议 + 可选管理/WS 端口）
func main() {
	var (
		addr      string
		adminAddr string
		cfgPath   string
		logFile   string
		seed      int64
	)
	flag.StringVar(&addr, "addr", "", "game listen address, e.g. localhost:9999 (overrides config)")
	flag.StringVar(&adminAddr, "admin", "", "admin/metrics/ws listen address, empty to disable")
	flag.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flag.StringVar(&logFile, "log", "", "log file path (overrides config)")
	flag.Int64Var(&seed, "seed", 0, "world seed, drives generated player names")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if seed != 0 {
		cfg.Seed = seed
	}

	// 使用第三方 zap 日志库写入文件（带滚动）
	if err := server.InitLogger(cfg.LogFile); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	w := world.New()
	w.Chunk(0, 0) // 预生成出生区块，首个客户端登录不用等
	reg := server.NewRegistry()
	srv := server.New(cfg, w, reg)
	srv.StartBroadcaster()

	go func() {
		server.Log.Infof("pycraft listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{Addr: cfg.AdminAddr, Handler: srv.AdminMux()}
		go func() {
			server.Log.Infof("admin endpoints on %s", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				server.Log.Errorf("admin listen: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
	srv.Close()
	if admin != nil {
		_ = admin.Close()
	}
}
