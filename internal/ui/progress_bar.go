package ui

func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = max(0, min(progress, 1))
	dot := min(int(float64(width)*progress), width-1)
	out := make([]rune, 0, width)
	for i := range width {
		if i == dot {
			out = append(out, '🔘')
		} else {
			out = append(out, '▬')
		}
	}
	return string(out)
}
