package render

// Downsample box-filters b by factor n: every output pixel is the truncated
// per-channel mean of an n×n block. b's dimensions must be multiples of n.
func Downsample(b *Buffer, n int) *Buffer {
	if n <= 1 {
		out := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
		copy(out.Pix, b.Pix)
		return out
	}

	out := NewBuffer(b.Width/n, b.Height/n)
	area := n * n
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			var r, g, bl int
			for sy := y * n; sy < y*n+n; sy++ {
				i := b.offset(x*n, sy)
				for sx := 0; sx < n; sx++ {
					r += int(b.Pix[i])
					g += int(b.Pix[i+1])
					bl += int(b.Pix[i+2])
					i += 3
				}
			}
			j := out.offset(x, y)
			out.Pix[j] = uint8(r / area)
			out.Pix[j+1] = uint8(g / area)
			out.Pix[j+2] = uint8(bl / area)
		}
	}
	return out
}
