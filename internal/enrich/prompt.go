package enrich

import "strings"

// SystemPrompt is sent as the system message of every exchange.
const SystemPrompt = "You are a careful assistant that extracts laptop specifications from classified ads."

const promptHead = `Read the classified ad below and answer three questions about the laptop it offers. Reason step by step first, then finish with the answer lines in the exact format shown.

1. Memory: look for RAM, memory, Arbeitsspeicher or a GB figure that refers to memory (not storage).
   - RAM is 32 GB or more: RAM_more = true
   - RAM is below 32 GB: RAM_more = false
   - RAM is not stated: RAM_more = unknown

2. Screen size: look for a diagonal in inches (", Zoll, inch) or cm.
   - 14 inches or smaller: screen_small = true
   - larger than 14 inches: screen_small = false
   - size is not stated: screen_small = unknown

3. Resolution: look for a resolution such as 2560x1600, or names such as HD, FHD, Full HD, QHD, WQXGA, 2K, 3K, 4K, UHD, OLED panel specs.
   - higher than Full HD (1920x1080): screen_highres = true
   - Full HD or lower: screen_highres = false
   - resolution is not stated: screen_highres = unknown

Write your reasoning for each question: what the ad says, or that it says nothing about it.

Then end with exactly these four lines:
RAM_more = true|false|unknown
screen_small = true|false|unknown
screen_highres = true|false|unknown
full_info_obtained = true|false

full_info_obtained is true only when none of the three answers is unknown.

Example ad:
Title: Lenovo LOQ Gaming Laptop i5-13450HX RTX 4060 32GB
Description: Verkaufe meinen Lenovo LOQ. i5-13450HX, RTX 4060, 32 GB RAM, 2x 1 TB SSD, FullHD Display. Netzteil dabei.

Example reasoning:
Memory: "32 GB RAM" is stated, which is 32 GB or more, so RAM_more = true.
Screen size: no diagonal is given anywhere, so screen_small = unknown.
Resolution: "FullHD Display" is 1920x1080, which is not higher than Full HD, so screen_highres = false.
One answer is unknown, so full_info_obtained = false.

Example answer lines:
RAM_more = true
screen_small = unknown
screen_highres = false
full_info_obtained = false

Now the ad to analyse:
`

// BuildPrompt returns the user message for one listing.
func BuildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString(promptHead)
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n\nDescription: ")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nShow your reasoning for each question, then the four answer lines.")
	return b.String()
}
