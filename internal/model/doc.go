// Package model implements the inference side of the face detector: a
// feature backbone shared by two heads, one scoring face presence and one
// regressing the face box.
//
// # Forward Contract
//
// DetectionModel.Predict runs the backbone exactly once per input and hands
// the same feature tensor to both heads. Heads never modify their input.
// Both heads end in a sigmoid, so presence and every box coordinate lie in
// [0,1]. Box coordinates are normalized to the model input and are decoded
// to pixels with Output.Decode.
//
// # Parameters
//
// Head (and optionally backbone) parameters come from a JSON checkpoint of
// the form
//
//	{"model_state_dict": {"face.2.weight": {"shape": [2048, 512], "data": [...]}, ...}}
//
// using the layer keys of the training code. A missing key yields
// ErrMissingParameter and an incompatible shape ErrShape; both are fatal.
//
// The backbone is an interface. VGG16 can be evaluated in pure Go from the
// checkpoint's vgg16.features.* parameters, or through ONNX Runtime with the
// onnx subpackage.
package model
