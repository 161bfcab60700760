package password

type Hasher interface {
	Hash(plaintext string) (string, error)
	// Verify на неверный пароль возвращает false без ошибки; ошибка
	// означает, что испорчен сам хеш.
	Verify(plaintext, digest string) (bool, error)
}
