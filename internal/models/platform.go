package models

// Platform identifies a supported social network
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists every supported platform in display order
var Platforms = []Platform{PlatformInstagram, PlatformFacebook, PlatformYouTube, PlatformTikTok}

// Valid reports whether p is one of the supported platforms
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformYouTube, PlatformTikTok:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}
