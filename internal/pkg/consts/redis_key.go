package consts

const (
	// IMConvListKey 会话列表变更频道 im:convlist:<clubID>:<userID>
	IMConvListKey = "im:convlist:"
	// IMConversationKey 会话内消息变更频道 im:conversation:<convID>
	IMConversationKey = "im:conversation:"
	// IMTypingEventKey 正在输入变更频道 im:typing:event:<convID>
	IMTypingEventKey = "im:typing:event:"
	// IMTypingStateKey 正在输入状态 Hash im:typing:state:<convID>
	IMTypingStateKey = "im:typing:state:"
)
