// Package ports defines the interfaces that connect the relay core
// (internal/app) to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Dialer]: establishes a robot session
//   - [Session]: request/reply, one-way publish, topic subscription and
//     video delivery over one live robot connection
//   - [FrameEncoder]: compresses decoded frames for streaming
//
// The app layer depends only on these interfaces. Adapters in
// internal/adapters provide the WebSocket bridge session and the JPEG encoder.
package ports
