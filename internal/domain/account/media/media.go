package media

import "context"

// Store: внешний медиа-хост для аватаров и обложек.
type Store interface {
	// Upload загружает локальный файл и возвращает его публичный URL.
	Upload(ctx context.Context, localPath string) (url string, err error)
	Delete(ctx context.Context, url string) error
}
