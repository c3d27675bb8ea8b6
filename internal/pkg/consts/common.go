package consts

const (
	ConvTypeDirect int8 = 1
	ConvTypeGroup  int8 = 2
)

const (
	MsgTypeText  = 1
	MsgTypeImage = 2
	MsgTypeFile  = 3
)

const (
	// DeletedPlaceholder 撤回后展示给所有参与者的占位文案
	DeletedPlaceholder = "此消息已被删除"
)

const (
	// AgentUserID AI 助手的保留发送者 ID，发消息时跳过成员校验
	AgentUserID uint64 = 0
	AgentName          = "小社AI"
	AgentAvatar        = "agent_avatar.png"
)

const (
	MimePrefixImage = "image"
)
