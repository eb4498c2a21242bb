package auth

// Known OAuth scopes used by the avatar endpoints.
const (
	ScopeAvatarsWrite = "avatars:write"
	ScopeAvatarsRead  = "avatars:read"
)
