// Package frames provides the fixed arena of reference-counted frame buffers
// shared between the decoder and the display pipeline.
//
// # Overview
//
// A Pool owns a fixed number of buffers, each sized for the largest supported
// image. Buffers are handed out as *Handle values; the index of a slot is never
// exposed. Acquisition never blocks: when every buffer is in use, Acquire
// reports failure and the caller drops the frame.
//
// # Ownership
//
//	h, ok := pool.Acquire() // refs 0 -> 1, caller is the exclusive writer
//	if !ok {
//		return // pool exhausted, drop the frame
//	}
//	h.Fill(frame)           // only while exclusive
//	h.Reserve()             // a reader shares the buffer
//	h.Release()             // each holder releases once
//
// A buffer is returned to the free set when its count reaches zero. Releasing
// an unreferenced buffer is an error that is logged and ignored; the count
// never goes negative.
//
// # Layout
//
// Frame data is stored tightly packed with one plane after another. See
// PixelFormat.Layout for the plane offsets and strides of each format.
package frames
