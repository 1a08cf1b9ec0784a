package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LiveDesk/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient 初始化并返回一个新的 RedisClient 实例
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password, // 密码，没有则留空
		DB:       cfg.DB,       // 数据库
		PoolSize: cfg.PoolSize, // 连接池大小
		// 可选：添加超时配置
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// PING 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{
		Client: client,
	}, nil
}

// Close 关闭 Redis 连接
func (r *RedisClient) Close() error {
	return r.Client.Close()
}

const onlineAgentsKey = "desk:console:online_agents"

// AgentInfo 在线坐席信息
type AgentInfo struct {
	AgentID     uint   `json:"agent_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// AddOnlineAgent 把坐席加入在线列表，field 为坐席ID
func (r *RedisClient) AddOnlineAgent(ctx context.Context, info AgentInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	field := fmt.Sprintf("%d", info.AgentID)
	if err := r.Client.HSet(ctx, onlineAgentsKey, field, data).Err(); err != nil {
		return err
	}
	// 设置过期时间（24小时）
	return r.Client.Expire(ctx, onlineAgentsKey, 24*time.Hour).Err()
}

// RemoveOnlineAgent 把坐席移出在线列表
func (r *RedisClient) RemoveOnlineAgent(ctx context.Context, agentID uint) error {
	field := fmt.Sprintf("%d", agentID)
	return r.Client.HDel(ctx, onlineAgentsKey, field).Err()
}

// GetOnlineAgents 获取当前在线坐席
func (r *RedisClient) GetOnlineAgents(ctx context.Context) ([]AgentInfo, error) {
	result, err := r.Client.HGetAll(ctx, onlineAgentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch online agents: %w", err)
	}
	agents := make([]AgentInfo, 0, len(result))
	for _, data := range result {
		var info AgentInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		agents = append(agents, info)
	}
	return agents, nil
}
