package extraction

// extractionPrompt instructs the model to return strict JSON for one known
// document class: a retail purchase receipt for the book configured as the
// expected title. The response contract matches what parser.go validates.
const extractionPrompt = `You are given the OCR text of a retail purchase receipt.
Extract the following fields and reply with ONLY a JSON object, no markdown,
no commentary:

{
  "retailer": "<merchant name or null>",
  "amount": <total purchase amount as a number, or null>,
  "currency": "<ISO 4217 code, e.g. USD, or null>",
  "titleMatch": <true if the receipt mentions the book title "%s", else false>,
  "purchaseDate": "<YYYY-MM-DD or null>",
  "orderNumber": "<order/confirmation number or null>",
  "format": "<hardcover|ebook|audiobook or null>",
  "piiDetected": ["<categories of personal data present: email, phone, name, street_address, ...>"],
  "fieldConfidence": {"retailer": <0-1>, "amount": <0-1>, "purchaseDate": <0-1>, "format": <0-1>},
  "confidence": <overall extraction confidence 0-1>,
  "manualReview": <true if a human should look at this receipt>,
  "manualReviewReason": "<short reason or null>"
}

Use null for any field you cannot read with confidence. Never guess an order
number or amount.

Receipt text:
%s`
