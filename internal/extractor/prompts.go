package extractor

// Instructions is the system prompt sent with every chunk
const Instructions = `You are an expert in U.S. legislation drafting. Your task is to analyze a piece of legislation and identify its key sections, legal language, and any uncommon provisions.
Please provide a detailed analysis of the legislation, including:
1. A breakdown of the main sections, including their titles and content.
2. Any legalese or specialized language used, such as severability clauses, sunset clauses, or regulatory authority.
3. Identification of any uncommon sections that are not typically found in standard legislation.
4. A summary of the overall structure and purpose of the legislation.
Ensure your analysis is comprehensive and captures the nuances of the legislative text.`

// ValidationInstructions is the system prompt for the legislation pre-check
const ValidationInstructions = "Determine if this text is structured like U.S. legislation."

// legislationSchema describes the JSON object the model must return.
// JSON mode guarantees syntax only, so the shape is spelled out.
const legislationSchema = `Respond with a single JSON object using exactly these keys:
{
  "short_title": string,
  "table_of_contents": string,
  "findings_or_purpose": string,
  "definitions": [string],
  "authorization_of_appropriations": string,
  "effective_date": string,
  "amendments": [string],
  "sections": [{"section_number": string, "title": string, "content": string, "notes": string, "uncommon_section": boolean}],
  "legalese": {
    "severability_clause": string,
    "sunset_clause": string,
    "regulatory_authority": string,
    "reporting_requirements": [string],
    "enforcement_provisions": [string],
    "conforming_amendments": [string]
  }
}
Use an empty string or empty list when the text does not contain the element.`

const validationSchema = `Respond with a single JSON object: {"is_legislation": boolean, "confidence_score": number between 0 and 1}.`
