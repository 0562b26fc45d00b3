// Package model defines the language-model capability the engine injects:
// free-form completion plus the two auxiliary elicitations the memory system
// needs (importance scoring and reflection synthesis). Provider adapters live
// in subpackages (anthropic, openai); MockModel serves tests and offline
// development.
package model
