// Package ws attaches out-of-process frame hosts to iframe demos.
//
// A frame host dials GET /api/demos/:id/frame and from then on receives the
// demo's dumi.liveDemo.setSource messages and answers each with one
// dumi.liveDemo.compileDone message. A newer connection replaces the
// previous one.
package ws
