// Package filter decides whether raw timeline text belongs to the AI
// prompt domain, and derives category and tags from it. Everything here
// is a pure function of the input text.
package filter

import (
	"regexp"
	"strings"
)

// Known false positives: posts that mention model names without carrying
// a prompt. Checked before the keyword vocabulary.
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(breaking news|breaking:|just dropped|now (available|live)|incredible|wow,)`),
	regexp.MustCompile(`(?i)prompt in (the )?alt|alt text`),
	regexp.MustCompile(`(?i)^(steps:|\d+\.)`),
}

// keywords covers model names, tool names and domain terms across
// languages. Matching is case-insensitive substring containment.
var keywords = []string{
	// image models
	"midjourney", "mj", "v6", "v5",
	"stable diffusion", "sd", "sdxl", "sd3",
	"dall-e", "dalle", "dalle-3",
	"flux", "flux.1", "flux pro",
	"leonardo", "leonardo.ai",
	"adobe firefly", "firefly",
	"imagen", "imagen 3",
	"ideogram", "playground",
	"niji", "niji journey",
	"nano banana", "nano banana pro", "nana banana pro",
	// video models
	"sora", "runway", "gen-2", "gen-3",
	"pika", "pika labs",
	"stable video", "animate diff",
	"kling", "hailuo", "海螺",
	// text models
	"chatgpt", "gpt-4", "gpt-4o",
	"claude", "claude 3", "sonnet",
	"gemini", "gemini pro",
	"grok", "grok-2",
	"llama", "mistral",
	// tools
	"comfyui", "automatic1111",
	"controlnet", "ipadapter",
	"lora", "checkpoint", "embedding",
	"inpainting", "outpainting",
	"img2img", "txt2img",
	"upscale", "face restore",
	// chinese terms
	"提示词", "咒语", "prompt",
	"ai生成", "ai绘画", "ai艺术",
	"ai图片", "ai作图", "ai画图",
	"人工智能", "生成式ai", "文生图",
	"图生图", "模型", "参数",
	// communities
	"civitai", "huggingface",
	"openart", "prompthero",
	"lexica", "arthub",
}

// DefaultCategory is used when no mapping keyword matches.
const DefaultCategory = "AI Art"

// categoryMapping is scanned in order; the first matching keyword wins.
var categoryMapping = []struct {
	keywords []string
	label    string
}{
	{[]string{"midjourney", "mj"}, "Midjourney"},
	{[]string{"stable diffusion", "sd"}, "Stable Diffusion"},
	{[]string{"dall-e", "dalle"}, "DALL-E"},
	{[]string{"flux"}, "Flux"},
	{[]string{"sora"}, "Sora"},
	{[]string{"runway"}, "Runway"},
	{[]string{"leonardo"}, "Leonardo"},
	{[]string{"comfyui"}, "ComfyUI"},
	{[]string{"nano banana", "nana banana pro"}, "Nano Banana Pro"},
}

// hashtagPattern covers word characters plus CJK ideographs.
var hashtagPattern = regexp.MustCompile(`#[\x{4e00}-\x{9fa5}a-zA-Z0-9_]+`)

// IsRelevant reports whether text looks like AI prompt content.
// Deterministic: same text always yields the same verdict.
func IsRelevant(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range excludePatterns {
		if p.MatchString(text) {
			return false
		}
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Category maps text to a single label, DefaultCategory when nothing
// matches.
func Category(text string) string {
	if text == "" {
		return DefaultCategory
	}
	lower := strings.ToLower(text)
	for _, m := range categoryMapping {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				return m.label
			}
		}
	}
	return DefaultCategory
}

// Tags returns hashtag bodies found in text, marker stripped, first
// occurrence order, no duplicates.
func Tags(text string) []string {
	if text == "" {
		return nil
	}
	matches := hashtagPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.TrimPrefix(m, "#")
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
