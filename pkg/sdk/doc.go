// Package coursekb provides a Go client for the coursekb question answering
// service.
//
//	client := coursekb.New("https://kb.example.com")
//	res, err := client.Ask(ctx, "How do I submit homework 3?")
//	if err != nil {
//	    // transport-level failure; the service itself never errors an answer
//	}
//	fmt.Println(res.Answer)
//	for _, l := range res.Links {
//	    fmt.Println(l.URL)
//	}
//
// The service answers every well-formed request with HTTP 200: pipeline
// failures surface as degraded answer texts, not status codes. Ask only
// returns an error when the request itself could not be made or decoded.
package coursekb
