// Package review holds the shared state of one review session: which video
// is open, its native dimensions and frame rate, and the playhead position
// supplied by the playback collaborator.
package review

import (
	"sync"

	"github.com/framepoint/annotate/internal/model/core"
)

// Context is read by the geometry and interaction layers on every pointer
// event and written by the playback and viewport collaborators.
type Context struct {
	mu           sync.RWMutex
	videoID      string
	native       core.Size
	fps          float64
	currentFrame int
	seekFunc     func(frame int)
}

// NewContext creates a Context with no video loaded.
func NewContext() *Context {
	return &Context{}
}

// SetVideo switches the session to a video and resets the playhead.
func (c *Context) SetVideo(videoID string, native core.Size, fps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoID = videoID
	c.native = native
	c.fps = fps
	c.currentFrame = 0
}

// VideoID returns the open video's id, empty when none is loaded.
func (c *Context) VideoID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoID
}

// NativeSize returns the video's native pixel dimensions.
func (c *Context) NativeSize() core.Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.native
}

// FPS returns the video's frame rate.
func (c *Context) FPS() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fps
}

// SetFrame records the playhead position reported by the player.
func (c *Context) SetFrame(frame int) {
	if frame < 0 {
		frame = 0
	}
	c.mu.Lock()
	c.currentFrame = frame
	c.mu.Unlock()
}

// Frame returns the current playhead position.
func (c *Context) Frame() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentFrame
}

// SetSeekFunc registers the playback collaborator's seek entry point.
func (c *Context) SetSeekFunc(fn func(frame int)) {
	c.mu.Lock()
	c.seekFunc = fn
	c.mu.Unlock()
}

// RequestSeek asks the player to jump to a frame, as when a reviewer clicks
// a frame marker. The playhead only moves once the player reports back
// through SetFrame.
func (c *Context) RequestSeek(frame int) {
	if frame < 0 {
		frame = 0
	}
	c.mu.RLock()
	fn := c.seekFunc
	c.mu.RUnlock()
	if fn != nil {
		fn(frame)
	}
}
