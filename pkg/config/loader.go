package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 服務設定 from .env
type EnvInfo struct {
	// image name, also the yaml file name
	ChatService string
	// service port
	ChatServicePort string
	// service yaml dir
	ChatServiceYAMLPath string
	// service log dir
	ChatServiceLogPath string
}

// EnvConfig 服務環境設定
var (
	EnvConfig = initEnv()
	dotEnv    sync.Once
	env       string
)

// loadDotEnv .env 只讀一次，已存在的環境變數優先
func loadDotEnv() {
	dotEnv.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: %v", err)
			return
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}
	})
}

func initEnv() EnvInfo {
	loadDotEnv()
	env = os.Getenv("ENV")

	info := EnvInfo{
		ChatService:         getEnv("CHAT_SERVICE", "chat_service"),
		ChatServicePort:     os.Getenv("CHAT_SERVICE_PORT"),
		ChatServiceYAMLPath: getEnv("CHAT_SERVICE_YAML", "./config"),
		ChatServiceLogPath:  getEnv("CHAT_SERVICE_LOG", "./logs"),
	}
	log.Printf("Service: %+v", info)
	return info
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaulter config types that provide viper defaults
type defaulter interface {
	Defaults() map[string]interface{}
}

// LoadConfig 加載配置, exits on failure
func LoadConfig[T any](serviceName string, configPath string) T {
	cfg, err := ReadConfig[T](serviceName, configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// ReadConfig reads <configPath>/<serviceName>.yaml, expanding ${ENV} placeholders.
// Keys missing from the file fall back to T's Defaults().
func ReadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	if d, ok := any(cfg).(defaulter); ok {
		for key, value := range d.Defaults() {
			v.SetDefault(key, value)
		}
	}

	// 自動讀取環境變數, websocket.idle_timeout -> WEBSOCKET_IDLE_TIMEOUT
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	raw, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}
	// 替換 ${} 占位符為環境變數的值
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(raw)))); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", v.ConfigFileUsed(), err)
	}
	return cfg, nil
}

// GetRedisSetting sentinel master name and addresses from REDIS_SENTINEL<n>_IP / _PORT pairs
func GetRedisSetting() (string, []string) {
	loadDotEnv()

	var sentinelAddrs []string
	for _, kv := range os.Environ() {
		key, ip, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "REDIS_SENTINEL") || !strings.HasSuffix(key, "_IP") {
			continue
		}
		if port := os.Getenv(strings.TrimSuffix(key, "_IP") + "_PORT"); port != "" {
			sentinelAddrs = append(sentinelAddrs, ip+":"+port)
		}
	}
	// os.Environ 順序不固定
	sort.Strings(sentinelAddrs)

	return getEnv("REDIS_MASTER_NAME", "mymaster"), sentinelAddrs
}

// GetPath walk up at most maxCount directories looking for fileName
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName
	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
