package lumen

import "errors"

// ErrorKind classifies the sentinel errors a TextureSource, shader compile,
// or animation call can produce, so callers can branch on failure category
// without string-matching error text.
type ErrorKind uint8

const (
	ErrKindNone ErrorKind = iota
	ErrKindInvalidTree
	ErrKindUnknownTextureKind
	ErrKindUnknownShader
	ErrKindUnknownFont
	ErrKindTextureLoadNetwork
	ErrKindTextureLoadDecode
	ErrKindTextureLoadFormat
	ErrKindTextureLoadDimensions
	ErrKindGpuAllocFailed
	ErrKindShaderCompileFailed
	ErrKindShaderLinkFailed
	ErrKindAnimationOnDestroyed
)

// Sentinel errors, one per ErrorKind, following the errors.New-based pattern.
var (
	ErrInvalidTree            = errors.New("lumen: invalid tree operation")
	ErrUnknownTextureKind     = errors.New("lumen: unknown texture source kind")
	ErrUnknownShader          = errors.New("lumen: unknown shader")
	ErrUnknownFont            = errors.New("lumen: unknown font")
	ErrTextureLoadNetwork     = errors.New("lumen: texture load failed: network error")
	ErrTextureLoadDecode      = errors.New("lumen: texture load failed: decode error")
	ErrTextureLoadFormat      = errors.New("lumen: texture load failed: unsupported format")
	ErrTextureLoadDimensions  = errors.New("lumen: texture load failed: invalid dimensions")
	ErrGpuAllocFailed         = errors.New("lumen: gpu texture allocation failed")
	ErrShaderCompileFailed    = errors.New("lumen: shader compile failed")
	ErrShaderLinkFailed       = errors.New("lumen: shader link failed")
	ErrAnimationOnDestroyed   = errors.New("lumen: animation target node was destroyed")
)

// kindForErr maps a sentinel error to its ErrorKind, for LifecycleData.Kind.
func kindForErr(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidTree):
		return ErrKindInvalidTree
	case errors.Is(err, ErrUnknownTextureKind):
		return ErrKindUnknownTextureKind
	case errors.Is(err, ErrUnknownShader):
		return ErrKindUnknownShader
	case errors.Is(err, ErrUnknownFont):
		return ErrKindUnknownFont
	case errors.Is(err, ErrTextureLoadNetwork):
		return ErrKindTextureLoadNetwork
	case errors.Is(err, ErrTextureLoadDecode):
		return ErrKindTextureLoadDecode
	case errors.Is(err, ErrTextureLoadFormat):
		return ErrKindTextureLoadFormat
	case errors.Is(err, ErrTextureLoadDimensions):
		return ErrKindTextureLoadDimensions
	case errors.Is(err, ErrGpuAllocFailed):
		return ErrKindGpuAllocFailed
	case errors.Is(err, ErrShaderCompileFailed):
		return ErrKindShaderCompileFailed
	case errors.Is(err, ErrShaderLinkFailed):
		return ErrKindShaderLinkFailed
	case errors.Is(err, ErrAnimationOnDestroyed):
		return ErrKindAnimationOnDestroyed
	default:
		return ErrKindNone
	}
}
