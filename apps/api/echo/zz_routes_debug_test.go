package echoapi

import (
	"fmt"
	"testing"
	"time"

	"github.com/eduflow/eduflow/core"
)

func TestDebugRoutes(t *testing.T) {
	conf := &core.Config{TestMode: true, SecretKey: []byte("x"),
		Server: core.ServerConfig{JWTExpirationDelta: time.Minute, JWTRefreshExpirationDelta: time.Hour}}
	s := NewServer(&Options{Conf: conf, DisableReqLogs: true}).(*server)
	for _, r := range s.app.Routes() {
		fmt.Printf("%-6s %-45s %s\n", r.Method, r.Path, r.Name)
	}
}
