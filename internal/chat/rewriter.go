package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// queryPreamble instructs the model to compress the conversation into a
// single search query. The literal "0" is the model's way of saying it
// could not produce one.
const queryPreamble = `Di seguito è riportata la cronologia della conversazione effettuata fino a quel momento e una nuova domanda posta dall'utente a cui è necessario rispondere effettuando una ricerca in una sorgente del manuale e dei video di supporto.
Hai accesso a un indice di ricerca con centinaia di documenti.
Genera una query di ricerca basata sulla conversazione e sulla nuova domanda.
Non includere nomi di file di origine citati e nomi di documenti, ad esempio info.txt o doc.pdf, nei termini della query di ricerca.
Non includere testo all'interno di [] o <<>> nei termini della query di ricerca.
Non includere caratteri speciali come "+".
Se la domanda non è in inglese, traducila in italiano prima di generare la query di ricerca.
Se non riesci a generare una query di ricerca oppure se non è stata posta una domanda, restituisci solo il numero 0.`

// querySamples are the fixed few-shot pairs demonstrating
// "long question → short query".
var querySamples = []Message{
	{Role: RoleUser, Content: "Come si configura Alexa?"},
	{Role: RoleAssistant, Content: "configurazione Alexa"},
	{Role: RoleUser, Content: "Come si cambiano le batterie?"},
	{Role: RoleAssistant, Content: "sostituzione batterie"},
}

// rewriteQuery turns the conversation into a short search query using a
// dedicated deterministic completion: the instructional preamble, the
// few-shot samples, then the entire conversation. If the model answers "0"
// or nothing, the most recent user message is used verbatim — the fallback
// guarantees a non-empty query for retrieval.
func (o *Orchestrator) rewriteQuery(ctx context.Context, req *Request) (string, error) {
	msgs := make([]*ai.Message, 0, len(querySamples)+len(req.Messages)+1)
	msgs = append(msgs, ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(queryPreamble)))
	for _, sample := range querySamples {
		msgs = append(msgs, sample.toAI())
	}
	for _, m := range req.Messages {
		msgs = append(msgs, m.toAI())
	}

	opts := &Options{
		Messages:    msgs,
		Temperature: 0,
		MaxTokens:   o.maxTokens,
	}

	res, err := o.completer.Complete(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("rewriting query: %w", err)
	}
	if res == nil {
		return "", fmt.Errorf("rewriting query: %w", ErrNoResponse)
	}

	query := strings.TrimSpace(res.Text)
	if query == "" || query == "0" {
		query = req.LastUserText()
		o.logger.Debug("query rewriter declined, using last user message", "query_length", len(query))
	}

	o.logger.Info("search query ready", "query", query)
	return query, nil
}
