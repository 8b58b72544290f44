package domain

const (
	RequesterIdCtxKey = "tv-requesterId"
)
