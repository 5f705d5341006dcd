package testtool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"realtime_chat_service/pkg/token"

	"github.com/docker/go-connections/nat"
	gws "github.com/gorilla/websocket"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer 通用函式來啟動測試容器
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	if err != nil {
		return nil, "", "", err
	}

	port, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, port.Port(), nil
}

// PostgresRequest postgres:16 with user/password/db "chat"
func PostgresRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "chat",
			"POSTGRES_PASSWORD": "chat",
			"POSTGRES_DB":       "chat",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
}

// PostgresDSN url form accepted by pgxpool and gorm
func PostgresDSN(host, port string) string {
	return fmt.Sprintf("postgres://chat:chat@%s:%s/chat?sslmode=disable", host, port)
}

// MongoRequest mongo:7 without auth
func MongoRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
}

// RedisRequest redis:7
func RedisRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
}

// DialChat opens a websocket to /ws/chat/ on baseURL (ws://host:port); authToken may be empty
func DialChat(baseURL, authToken string) (*gws.Conn, *http.Response, error) {
	url := baseURL + "/ws/chat/"
	if authToken != "" {
		url += "?auth=" + authToken
	}
	dialer := gws.Dialer{HandshakeTimeout: 5 * time.Second}
	return dialer.Dial(url, nil)
}

// MustToken signed token for userID, panics on failure (tests only)
func MustToken(userID string) string {
	t, err := token.GenerateJWT(userID, string(token.RoleUser), "test")
	if err != nil {
		panic(err)
	}
	return t
}
