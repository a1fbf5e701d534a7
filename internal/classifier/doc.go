// Package classifier maps a query to an inference tier and a complexity score.
//
// Classification is a fixed, ordered cascade of typed rules where the first
// match wins:
//
//   - ShortcutRule: command-style questions ("welcher Befehl zeigt ...") go to Light.
//   - ForcedTierRule: math and optimization problems go to Heavy, or to
//     Specialized when the query asks for a program.
//   - HintRule: an upstream hint naming a tier is honoured.
//   - ScoreFallbackRule: a composite score over token count, keyword density,
//     complexity indicators, structural patterns and math notation picks the tier.
//
// All matching runs on normalized text (casefolded, NFKD, combining marks
// removed). Classification is deterministic and does no I/O.
package classifier
