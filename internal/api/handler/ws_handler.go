package handler

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/feed"
	"Clubline/internal/pkg/response"
	"Clubline/internal/pkg/security"
	"Clubline/internal/service"
	"context"
	log "log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsClientOp 客户端下行指令
// action: watch_messages / unwatch_messages / watch_typing / unwatch_typing
type wsClientOp struct {
	Action         string `json:"action"`
	ConversationID uint64 `json:"conversation_id"`
	Limit          int    `json:"limit"`
}

// wsEnvelope 推送信封，data 为对应主题的全量快照
type wsEnvelope struct {
	Type           string      `json:"type"` // conversations / messages / typing
	ConversationID uint64      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data"`
}

type WsHandler struct {
	broker *feed.Broker
}

func NewWsHandler(broker *feed.Broker) *WsHandler {
	return &WsHandler{broker: broker}
}

// Connect 建立推送长连接
// 连接期自动订阅会话列表快照；消息窗口与输入状态由客户端按需 watch
func (s *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	userID := claims.UserID
	clubID, _ := strconv.ParseUint(c.Query("clubId"), 10, 64)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session := &wsSession{
		conn:    conn,
		broker:  s.broker,
		userID:  userID,
		msgSubs: make(map[uint64]*feed.Stream[[]*dto.MessageDTO]),
		typSubs: make(map[uint64]*feed.Stream[[]*dto.TypingStateDTO]),
	}
	defer session.closeAll()

	convStream := s.broker.SubscribeConversations(ctx, userID, clubID)
	go func() {
		for snapshot := range convStream.C {
			session.push(&wsEnvelope{Type: "conversations", Data: snapshot})
		}
		// 会话列表流终止即整体断开
		cancel()
		_ = conn.Close()
	}()

	log.Info("用户 WS 连接已建立", "userID", userID, "clubID", clubID)

	// 读循环：处理客户端 watch 指令，连接断开时退出
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Info("用户 WS 连接已断开", "userID", userID)
			return
		}
		var op wsClientOp
		if err := json.Unmarshal(raw, &op); err != nil {
			continue
		}
		session.handleOp(ctx, &op)
	}
}

// wsSession 单条连接上的订阅集合，读循环串行调度、写操作互斥
type wsSession struct {
	conn   *websocket.Conn
	broker *feed.Broker
	userID uint64

	writeMu sync.Mutex
	msgSubs map[uint64]*feed.Stream[[]*dto.MessageDTO]
	typSubs map[uint64]*feed.Stream[[]*dto.TypingStateDTO]
}

func (s *wsSession) handleOp(ctx context.Context, op *wsClientOp) {
	switch op.Action {
	case "watch_messages":
		if _, ok := s.msgSubs[op.ConversationID]; ok {
			return
		}
		stream := s.broker.SubscribeMessages(ctx, s.userID, op.ConversationID, op.Limit)
		s.msgSubs[op.ConversationID] = stream
		go s.forwardMessages(op.ConversationID, stream)
	case "unwatch_messages":
		if stream, ok := s.msgSubs[op.ConversationID]; ok {
			stream.Close()
			delete(s.msgSubs, op.ConversationID)
		}
	case "watch_typing":
		if _, ok := s.typSubs[op.ConversationID]; ok {
			return
		}
		stream := s.broker.SubscribeTyping(ctx, op.ConversationID)
		s.typSubs[op.ConversationID] = stream
		go s.forwardTyping(op.ConversationID, stream)
	case "unwatch_typing":
		if stream, ok := s.typSubs[op.ConversationID]; ok {
			stream.Close()
			delete(s.typSubs, op.ConversationID)
		}
	}
}

func (s *wsSession) forwardMessages(convID uint64, stream *feed.Stream[[]*dto.MessageDTO]) {
	for snapshot := range stream.C {
		s.push(&wsEnvelope{Type: "messages", ConversationID: convID, Data: snapshot})
	}
	s.push(&wsEnvelope{Type: "messages_closed", ConversationID: convID, Data: nil})
}

func (s *wsSession) forwardTyping(convID uint64, stream *feed.Stream[[]*dto.TypingStateDTO]) {
	for snapshot := range stream.C {
		s.push(&wsEnvelope{Type: "typing", ConversationID: convID, Data: snapshot})
	}
	s.push(&wsEnvelope{Type: "typing_closed", ConversationID: convID, Data: nil})
}

func (s *wsSession) push(envelope *wsEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Warn("WS 推送失败", "userID", s.userID, "err", err)
	}
}

func (s *wsSession) closeAll() {
	for _, stream := range s.msgSubs {
		stream.Close()
	}
	for _, stream := range s.typSubs {
		stream.Close()
	}
}
