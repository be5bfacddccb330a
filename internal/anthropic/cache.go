package anthropic

// BuildCachedSystemBlocks constructs a system content block with a 1-hour
// cache breakpoint — used to warm the prompt cache for the planner's large,
// mostly-static tool-registry system prompt so every subsequent turn in a
// conversation reads it from cache instead of reprocessing it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "1h"}}}
}
