// Package watermark implements frequency-domain watermark embedding and
// extraction over 2D sample grids.
//
// Two codecs are provided:
//
//   - BlockCodec: 8x8 orthonormal DCT blocks, one payload bit per block,
//     encoded in the sign of a mid-frequency coefficient.
//   - WaveletCodec: multi-level Haar DWT, payload bits encoded in the sign of
//     coefficients from the HH, HL and LH sub-bands bordering LL.
//
// Samples are mapped into grids with ToGrid and read back with FromGrid.
// Text payloads are serialized with StringToBits (UTF-8, MSB first) and
// decoded strictly with BitsToString. Redundant observations of the same
// payload are reconciled with Vote.
//
// Grids are owned by a single call: codecs never retain or alias the grid
// passed to Embed or Extract.
package watermark
