// Package embeddings turns text prompts and image files into vectors in a
// shared CLIP embedding space.
//
// Two providers are available behind the Provider interface: a local ONNX
// export of a CLIP model (text and vision towers run through onnxruntime) and
// a remote OpenAI-compatible multimodal embeddings endpoint. NewProvider
// selects one from ProviderConfig; the caller owns the result and must Close
// it.
//
// Image failures (unreadable or undecodable files) wrap ErrImageDecode so the
// ranking layer can skip them; model failures wrap ErrEmbeddingFailed.
package embeddings
