package converter

// TextConverter 定义文本转换器接口
type TextConverter interface {
	TradToSim(text string) string // 将繁体中文转换为简体
}

// Identity 原样返回文本，用于未启用繁简转换的情况
type Identity struct{}

// TradToSim 返回原文
func (Identity) TradToSim(text string) string { return text }

// ConvertAll 逐项转换，返回新切片
func ConvertAll(c TextConverter, texts []string) []string {
	if len(texts) == 0 {
		return texts
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = c.TradToSim(text)
	}
	return out
}
