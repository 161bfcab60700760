package middleware

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const uploadKeyPrefix = "account.upload."

// SaveUploads сохраняет указанные multipart-файлы в dir до хендлера
// и удаляет их после. Отсутствие файла здесь не ошибка:
// обязательность решает хендлер.
func SaveUploads(dir string, maxBytes int64, fields ...string) gin.HandlerFunc {
	limit := maxBytes*int64(len(fields)) + 1<<20

	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, http.ErrNotMultipart):
				c.Next()
				return
			case errors.As(err, &tooLarge):
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
				return
			default:
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed multipart form"})
				return
			}
		}

		var saved []string
		defer func() {
			for _, p := range saved {
				_ = os.Remove(p)
			}
		}()

		for _, field := range fields {
			fh, err := c.FormFile(field)
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed " + field + " file"})
				return
			}
			if fh.Size > maxBytes {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " is too large"})
				return
			}

			dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
			if err := c.SaveUploadedFile(fh, dst); err != nil {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			saved = append(saved, dst)
			c.Set(uploadKeyPrefix+field, dst)
		}

		c.Next()
	}
}

// PrepareUploadDir создаёт каталог для загрузок и проверяет, что в него
// можно писать.
func PrepareUploadDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// UploadedPath возвращает путь файла, сохранённого SaveUploads, или "".
func UploadedPath(c *gin.Context, field string) string {
	return c.GetString(uploadKeyPrefix + field)
}
