package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

// 校验类错误(400)与权限类错误(403)必须可区分：
// 客户端需要分别提示“超时不可操作”与“不是你的消息”
var (
	ErrParamInvalid           = errors.New("参数错误")
	ErrDirectParticipants     = errors.New("单聊必须且仅能包含两名成员")
	ErrGroupParticipantsEmpty = errors.New("群聊成员不能为空")
	ErrEditWindowExpired      = errors.New("已超过可编辑时间")
	ErrDeleteWindowExpired    = errors.New("已超过可撤回时间")
	ErrMessageDeleted         = errors.New("消息已被删除，无法操作")
	ErrContentEmpty           = errors.New("消息内容不能为空")
	ErrAttachmentsEmpty       = errors.New("附件不能为空")

	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")

	ErrNotConversationMember = errors.New("不是会话成员")
	ErrNotMessageSender      = errors.New("只能操作自己发送的消息")
	ErrNotGroupAdmin         = errors.New("需要群管理员权限")
	ErrNotGroupConversation  = errors.New("仅群聊支持该操作")
	ErrMemberExist           = errors.New("用户已在会话中")

	ErrReactionConflict = errors.New("操作冲突，请稍后重试")

	UnauthorizedError = errors.New("权限不足")
	UnExpectedError   = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:           BadRequest,
	ErrDirectParticipants:     BadRequest,
	ErrGroupParticipantsEmpty: BadRequest,
	ErrEditWindowExpired:      BadRequest,
	ErrDeleteWindowExpired:    BadRequest,
	ErrMessageDeleted:         BadRequest,
	ErrContentEmpty:           BadRequest,
	ErrAttachmentsEmpty:       BadRequest,
	ErrMemberExist:            BadRequest,
	ErrConversationNotFound:   NotFound,
	ErrMessageNotFound:        NotFound,
	ErrNotConversationMember:  Forbidden,
	ErrNotMessageSender:       Forbidden,
	ErrNotGroupAdmin:          Forbidden,
	ErrNotGroupConversation:   Forbidden,
	ErrReactionConflict:       Conflict,
	UnauthorizedError:         Unauthorized,
	UnExpectedError:           InternalServerError,
}
