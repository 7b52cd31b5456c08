// Package reasoner decides which tools to call for a user message and
// composes the final reply.
//
// An Engine receives the merged tool catalog, the message, prior turns,
// and the outcomes of tools already executed this turn. It answers with
// either tool-call requests or a finished reply. Three engines ship:
// Anthropic and OpenAI adapters for model-driven planning, and a
// deterministic rule engine that works without any API key.
//
// Engines never execute tools themselves and never see connection state;
// they only see what the catalog offers.
package reasoner
