package handler

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/consts"
	"Clubline/internal/pkg/minio"
	"Clubline/internal/pkg/response"
	"Clubline/internal/pkg/util"
	"Clubline/internal/service"
	log "log/slog"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MediaHandler struct{}

func NewMediaHandler() *MediaHandler {
	return &MediaHandler{}
}

// Upload 上传聊天附件，返回可直接塞进消息的附件描述
// 核心不检查文件内容，只嗅探 MIME 决定消息类型归属
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	contentType, err := util.GetSafeContentType(reader)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	ext := path.Ext(file.Filename)
	objectName := time.Now().Format("2006/01/02/") + uuid.NewString() + ext

	fileKey, err := minio.UploadFile(c.Request.Context(), objectName, reader, file.Size, contentType)
	if err != nil {
		log.ErrorContext(c, "MinIO upload failed", "err", err)
		response.Error(c, service.UnExpectedError)
		return
	}

	msgType := consts.MsgTypeFile
	if strings.HasPrefix(contentType, consts.MimePrefixImage) {
		msgType = consts.MsgTypeImage
	}

	attachment := dto.AttachmentDTO{
		URL:  minio.GetPublicURL(fileKey),
		Name: file.Filename,
		Size: file.Size,
		Type: contentType,
	}

	log.InfoContext(c, "media upload success", "fileKey", fileKey, "type", contentType)
	response.Success(c, gin.H{
		"attachment": attachment,
		"msg_type":   msgType,
	})
}
