package util

import (
	"io"
	"mime/multipart"
	"net/http"
)

// GetSafeContentType 基于文件头嗅探真实 MIME 类型，不信任客户端声明
// 嗅探后把读取位置拨回文件起始，供后续上传复用同一 reader
func GetSafeContentType(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return http.DetectContentType(buf[:n]), nil
}
