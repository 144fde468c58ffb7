// Package buffer provides the mono sample buffer shared by the asset store,
// the IR renderer and the mixer, plus a pool that recycles rendered outputs
// once their playback has finished or been cancelled.
package buffer
