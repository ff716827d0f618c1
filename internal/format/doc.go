// Package format turns a news entry into chat messages.
//
// BBCodeToMarkup converts the constrained BBCode dialect used by Steam news
// into Discord-style markdown, Render builds the full announcement, and
// SplitToChunks cuts it into messages that fit the sink's size limit without
// breaking lines.
package format
