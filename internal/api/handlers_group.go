package api

import "Clubline/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ConversationHandler *handler.ConversationHandler
	IMHandler           *handler.IMHandler
	MediaHandler        *handler.MediaHandler
	WsHandler           *handler.WsHandler
}
