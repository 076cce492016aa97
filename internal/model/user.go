package model

import "time"

// User 用户实体
type User struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	NodeId    string    `json:"nodeId"` // 用户归属节点
	Privacy   int64     `json:"privacy"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NodeInfo 节点注册信息（存储在 Redis）
type NodeInfo struct {
	NodeId       string    `json:"nodeId"`
	Inbox        string    `json:"inbox"` // 节点 describe 请求的 NATS Subject
	RegisteredAt time.Time `json:"registeredAt"`
}

// 用户状态
const (
	StatusNormal   = 0
	StatusDisabled = 1
	StatusDeleted  = 2
)
